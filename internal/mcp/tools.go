package mcp

import "github.com/mark3labs/mcp-go/mcp"

var processClaimTool = mcp.NewTool("process_claim",
	mcp.WithDescription("Adjudicate a cash-back claim for a member. Describe the treatment in the message or pass a structured claim document."),
	mcp.WithString("member_id",
		mcp.Required(),
		mcp.Description("Membership number, e.g. MEM-1001"),
	),
	mcp.WithString("message",
		mcp.Description("Free-text claim description, e.g. 'GP visit yesterday, cost €60'"),
	),
	mcp.WithString("claim_document",
		mcp.Description("Optional claim document as a JSON object (treatment_type, treatment_date, practitioner_name, total_cost, ...)"),
	),
	mcp.WithString("role",
		mcp.Description("Who is submitting: customer claims are held for review, operator claims update usage immediately (default customer)"),
		mcp.Enum("customer", "operator"),
	),
	mcp.WithString("session_id",
		mcp.Description("Conversation to continue; omitted starts a new one"),
	),
)

var askFollowUpTool = mcp.NewTool("ask_follow_up",
	mcp.WithDescription("Ask a question about the last claim decided in a session. Never changes member usage."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Session returned by process_claim"),
	),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("The follow-up question"),
	),
)

var getMemberUsageTool = mcp.NewTool("get_member_usage",
	mcp.WithDescription("Get a member's benefit usage for the current policy year and their recent claims."),
	mcp.WithString("member_id",
		mcp.Required(),
		mcp.Description("Membership number"),
	),
)

var listReviewQueueTool = mcp.NewTool("list_review_queue",
	mcp.WithDescription("List claims awaiting operator review, highest priority first."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of claims to return (default 10)"),
	),
)
