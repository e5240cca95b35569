// Copyright 2025 The Cortex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RetryableError reports a request that kept hitting a retryable status
// until the retry budget ran out. StatusCode is the last status observed;
// RetryAfter is the delay the server asked for, when it sent one.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("HTTP %d: %s (retry after %v)", e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err is retry exhaustion against a backend
// that was throttling or unavailable, the statuses DefaultRetryStrategy
// backs off on with server-provided timing.
func IsRateLimited(err error) bool {
	var re *RetryableError
	if !errors.As(err, &re) {
		return false
	}
	return re.StatusCode == http.StatusTooManyRequests ||
		re.StatusCode == http.StatusServiceUnavailable
}

// IsTransient reports whether err is retry exhaustion on a transient
// server-side failure, the statuses DefaultRetryStrategy gives a short
// fixed retry ladder.
func IsTransient(err error) bool {
	var re *RetryableError
	if !errors.As(err, &re) {
		return false
	}
	switch re.StatusCode {
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
