package federate

import "errors"

// Configuration errors (spec §7), fatal at startup.
var (
	ErrFederationIDEmpty = errors.New("federate: federation id must not be empty")
	ErrFedNameTooLong    = errors.New("federate: federate name longer than 255 bytes")
)
