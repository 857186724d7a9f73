package upstream

import (
	azlog "github.com/Azure/azure-sdk-for-go/sdk/azcore/log"

	"github.com/atmet-ai/foundry-facade/internal/observability"
)

// RouteSDKLogs forwards Azure SDK diagnostics to logger at debug level.
// The SDK listener is process-wide; the last call wins.
func RouteSDKLogs(logger observability.Logger) {
	azlog.SetEvents(azlog.EventRequest, azlog.EventResponse, azlog.EventRetryPolicy, azlog.EventResponseError)
	azlog.SetListener(func(event azlog.Event, msg string) {
		logger.Debug(msg, observability.String("sdk_event", string(event)))
	})
}

// StopSDKLogs detaches the SDK log listener.
func StopSDKLogs() {
	azlog.SetListener(nil)
}
