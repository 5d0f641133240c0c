package turn

import (
	"context"
	"errors"
	"fmt"
)

// Gateway 标识失败的外部服务
type Gateway string

const (
	GatewayTranscription Gateway = "transcription"
	GatewayGeneration    Gateway = "generation"
	GatewaySynthesis     Gateway = "synthesis"
)

// ValidationError 输入不可用，未调用任何外部服务
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Reason
}

// ErrNoInput 既没有音频也没有非空文本，或音频转写结果为空
var ErrNoInput = &ValidationError{Reason: "no usable input provided"}

// ExternalServiceError 外部服务调用失败，本轮中止
type ExternalServiceError struct {
	Which  Gateway
	Detail string
	Err    error
}

func (e *ExternalServiceError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s service failed: %s: %v", e.Which, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s service failed: %v", e.Which, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call hit its deadline.
func (e *ExternalServiceError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
