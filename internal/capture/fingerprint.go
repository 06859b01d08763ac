package capture

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
)

// UIDPolicy decides how a fingerprint becomes a record uid.
type UIDPolicy int

const (
	// UIDTimestamped appends the capture millisecond to the encoded
	// fingerprint, so identical failures collapse only within the same
	// millisecond.
	UIDTimestamped UIDPolicy = iota
	// UIDStable uses the encoded fingerprint alone, so identical failures
	// collapse for the lifetime of the process.
	UIDStable
)

// ParseUIDPolicy maps a configuration value to a policy.
func ParseUIDPolicy(s string) (UIDPolicy, error) {
	switch strings.ToLower(s) {
	case "", "timestamped":
		return UIDTimestamped, nil
	case "stable":
		return UIDStable, nil
	default:
		return UIDTimestamped, fmt.Errorf("unknown dedup policy %q", s)
	}
}

func (p UIDPolicy) String() string {
	if p == UIDStable {
		return "stable"
	}
	return "timestamped"
}

func (p UIDPolicy) uid(fingerprint string, ts int64) string {
	if p == UIDStable {
		return fingerprint
	}
	return fingerprint + "-" + strconv.FormatInt(ts, 10)
}

func encode(parts ...string) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Join(parts, "|")))
}

func scriptFingerprint(typ domain.ExceptionType, ev *domain.ErrorEvent) string {
	if typ == domain.ExceptionResource {
		var src, tag string
		if ev.Target != nil {
			src, tag = ev.Target.Src, ev.Target.TagName
		}
		return encode(string(typ), src, tag)
	}
	return encode(string(typ), ev.ErrorMessage(), ev.Filename)
}

func rejectionFingerprint(ev *domain.RejectionEvent) string {
	value := ev.Reason.Message
	if ev.Value != nil {
		value = fmt.Sprint(ev.Value)
	}
	return encode(string(domain.ExceptionUnhandledRejection), ev.Reason.Name, value)
}

func networkFingerprint(info *domain.RequestInfo) string {
	parts := []string{string(domain.ExceptionNetwork), info.URL, info.Method, string(info.HTTPExceptionType)}
	if info.Status > 0 {
		parts = append(parts, strconv.Itoa(info.Status))
	}
	return encode(parts...)
}
