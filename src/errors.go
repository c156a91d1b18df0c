package dmrgps

import "errors"

// Kinds of failure.  All are recovered locally; none reach the radio.
var (
	ErrDecode     = errors.New("decode error")           // burst too short or malformed
	ErrReassembly = errors.New("reassembly error")       // bad block count or sequence restart
	ErrNoAssembly = errors.New("no assembly in progress") // data block without a header
	ErrParse      = errors.New("parse error")            // GPS sentence malformed
	ErrValidation = errors.New("validation error")       // report failed self check
	ErrProfileIO  = errors.New("profile store error")    // settings file unreadable or unwritable
	ErrUplink     = errors.New("uplink error")           // APRS-IS send failed
	ErrCommand    = errors.New("command error")          // message command could not be applied
)
