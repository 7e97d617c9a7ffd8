package httptransport

// 通用错误消息
const (
	MsgNoFile          = "未提供文件"
	MsgInvalidFileType = "只允许上传 CSV 文件"
	MsgFileTooLarge    = "文件大小超过限制"
	MsgNoEmails        = "CSV 文件中没有找到有效的邮箱地址"
	MsgProcessingError = "文件处理失败"
	MsgInvalidJobID    = "缺少任务 ID"
	MsgJobNotFound     = "任务不存在"
	MsgJobStarted      = "任务已启动，不能重复启动"
	MsgJobNotCompleted = "任务尚未完成，无法下载结果"
	MsgServerBusy      = "验证队列已满，请稍后重试"
	MsgExportFailed    = "生成结果文件失败"
	MsgUploadOK        = "文件解析成功，可以开始验证"
	MsgStartOK         = "验证任务已启动"
)
