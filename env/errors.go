package env

import "errors"

// Static errors for env package
var (
	ErrSourceNotFound       = errors.New("property source not found")
	ErrSourceRelativeToSelf = errors.New("property source cannot be added relative to itself")
	ErrNilSource            = errors.New("property source is nil")
	ErrInvalidArgument      = errors.New("invalid command line argument syntax")
	ErrUnresolvable         = errors.New("could not resolve placeholder")
	ErrConversion           = errors.New("cannot convert property value")
	ErrBindTarget           = errors.New("bind target must be a non-nil pointer to a struct")
	ErrBind                 = errors.New("cannot bind properties")
	ErrUnsupportedFile      = errors.New("unsupported configuration file type")
)
