package navsmoke

import "errors"

var (
	ErrDiscoveryUnreachable = errors.New("devtools discovery unreachable")
	ErrDiscoveryParse       = errors.New("devtools discovery response malformed")
	ErrNoEligibleTarget     = errors.New("no page target available")
	ErrNavigationTimeout    = errors.New("page load event not observed")
	ErrProtocol             = errors.New("protocol error")
	ErrDialFailed           = errors.New("websocket dial failed")
	ErrChannelClosed        = errors.New("channel closed")
	ErrReceiveTimeout       = errors.New("receive timed out")
)
