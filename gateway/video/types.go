// Package video implements asynchronous first/last-frame video generation
// against bearer-JWT providers.
package video

// 操作名
const (
	OperationCreate      = "create_video_task"
	OperationCreateMulti = "create_multi_image_video_task"
	OperationQuery       = "query_video_task"
	OperationQueryMulti  = "query_multi_image_video_task"
)

// 请求默认值
const (
	DefaultDuration = "5"
	DefaultMode     = "pro"
)

// 服务商原始任务状态
const (
	ProviderStatusSubmitted  = "submitted"
	ProviderStatusProcessing = "processing"
	ProviderStatusSucceed    = "succeed"
	ProviderStatusFailed     = "failed"
	ProviderStatusUnknown    = "unknown"
)

// State is the normalized lifecycle state of a video task.
type State string

const (
	StateProcessing State = "processing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateUnknown    State = "unknown"
)

// Task is a snapshot of a provider-side video task. Status carries the
// provider's raw status string; State() gives the normalized view.
type Task struct {
	TaskID       string `json:"task_id"`
	Status       string `json:"status"`
	VideoURL     string `json:"video_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// State maps the raw provider status. Unrecognized strings map to unknown,
// which is not terminal.
func (t Task) State() State {
	switch t.Status {
	case ProviderStatusSubmitted, ProviderStatusProcessing:
		return StateProcessing
	case ProviderStatusSucceed:
		return StateSucceeded
	case ProviderStatusFailed:
		return StateFailed
	default:
		return StateUnknown
	}
}

// Terminal reports whether polling can stop.
func (t Task) Terminal() bool {
	s := t.State()
	return s == StateSucceeded || s == StateFailed
}

// CreateRequest is the two-image (start/end frame) create call.
type CreateRequest struct {
	ServiceID  string
	AccessKey  string
	SecretKey  string
	Prompt     string
	StartFrame string
	EndFrame   string
	Model      string
	Duration   string
	Mode       string
}

// MultiImageRequest is the N-image create call. Only the first and last
// images are sent, as start and end frame.
type MultiImageRequest struct {
	ServiceID      string
	AccessKey      string
	SecretKey      string
	Prompt         string
	Images         []string
	Model          string
	NegativePrompt string
	Duration       string
	Mode           string
}

// QueryRequest identifies a task to poll.
type QueryRequest struct {
	ServiceID string
	AccessKey string
	SecretKey string
	TaskID    string
}

// variant 区分双图与多图两条路径的文案
type variant struct {
	createOp       string
	queryOp        string
	createFallback string
	queryFallback  string
	failedFallback string
}

var (
	twoImage = variant{
		createOp:       OperationCreate,
		queryOp:        OperationQuery,
		createFallback: "视频任务创建失败",
		queryFallback:  "查询视频任务失败",
		failedFallback: "视频生成失败",
	}
	multiImage = variant{
		createOp:       OperationCreateMulti,
		queryOp:        OperationQueryMulti,
		createFallback: "创建多图生视频任务失败",
		queryFallback:  "查询多图生视频任务失败",
		failedFallback: "多图生视频失败",
	}
)
