package capture

import "github.com/tjfontaine/errorvitals/internal/core/domain"

// Classify types a signal from the script-error channel. A structured script
// error is cors when its message is the cross-origin mask and js otherwise.
// Everything else, including signals with neither an error nor a target, is
// a resource failure.
func Classify(ev *domain.ErrorEvent) domain.ExceptionType {
	if !ev.IsScriptError() {
		return domain.ExceptionResource
	}
	if ev.ErrorMessage() == domain.CrossOriginMessage {
		return domain.ExceptionCrossOrigin
	}
	return domain.ExceptionJS
}
