package registry

import "net/http"

// Outcome 是条件请求的四种结果。
type Outcome int

const (
	OutcomeError Outcome = iota
	OutcomeFresh
	OutcomeNotModified
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFresh:
		return "fresh"
	case OutcomeNotModified:
		return "not_modified"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "error"
	}
}

// Classify 根据状态码与前后 ETag 判定结果。部分后端对二进制归档不支持条件请求，
// 总是返回 200，此时 ETag 与 prior 完全一致也按 NotModified 处理。
func Classify(status int, responseETag, priorETag string) Outcome {
	switch {
	case status == http.StatusOK && responseETag != "" && responseETag == priorETag:
		return OutcomeNotModified
	case status == http.StatusOK:
		return OutcomeFresh
	case status == http.StatusNotModified:
		return OutcomeNotModified
	case status == http.StatusNotFound:
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}

// ParseETag 读取响应 ETag，缺失时返回空串。
func ParseETag(header http.Header) string {
	if header == nil {
		return ""
	}
	return header.Get("Etag")
}

// OutcomeOf 从已折叠的 Response 反推结果，供日志与指标使用。
func OutcomeOf(resp *Response, err error) Outcome {
	switch {
	case err != nil || resp == nil:
		return OutcomeError
	case resp.Store != nil:
		return OutcomeFresh
	case resp.ETag != "":
		return OutcomeNotModified
	default:
		return OutcomeNotFound
	}
}
