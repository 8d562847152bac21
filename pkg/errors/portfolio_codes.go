package errors

import "net/http"

// Portfolio service errors.
var (
	// ErrChatNotConfigured is returned when the embedding, generation or vector
	// store credentials are missing.
	ErrChatNotConfigured = Register(&Errno{
		Code:      MakeCode(ServicePortfolio, CategoryConfig, 1),
		HTTP:      http.StatusServiceUnavailable,
		MessageEN: "AI services not configured",
		MessageZH: "AI 服务未配置",
	})

	// ErrEmbedQuery is returned when the question could not be embedded.
	ErrEmbedQuery = Register(&Errno{
		Code:      MakeCode(ServicePortfolio, CategoryInternal, 1),
		HTTP:      http.StatusInternalServerError,
		MessageEN: "Failed to embed query",
		MessageZH: "问题向量化失败",
	})

	// ErrChatFailed is the generic chat failure.
	ErrChatFailed = Register(&Errno{
		Code:      MakeCode(ServicePortfolio, CategoryInternal, 2),
		HTTP:      http.StatusInternalServerError,
		MessageEN: "Failed to answer the question",
		MessageZH: "回答生成失败",
	})

	// ErrIngestRunning is returned when an ingestion run is already in progress.
	ErrIngestRunning = Register(&Errno{
		Code:      MakeCode(ServicePortfolio, CategoryConflict, 1),
		HTTP:      http.StatusConflict,
		MessageEN: "Ingestion already running",
		MessageZH: "知识库构建正在进行中",
	})

	// ErrIngestSubmit is returned when the background task could not be scheduled.
	ErrIngestSubmit = Register(&Errno{
		Code:      MakeCode(ServicePortfolio, CategoryNetwork, 1),
		HTTP:      http.StatusServiceUnavailable,
		MessageEN: "Failed to schedule ingestion",
		MessageZH: "知识库构建任务提交失败",
	})

	// ErrAdminForbidden is returned when the token is valid but the account is not an admin.
	ErrAdminForbidden = Register(&Errno{
		Code:      MakeCode(ServicePortfolio, CategoryPermission, 1),
		HTTP:      http.StatusForbidden,
		MessageEN: "Not authorized as admin",
		MessageZH: "非管理员账号",
	})
)
