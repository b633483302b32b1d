package varlog

import "errors"

// ErrDeleted is returned when a var record's offset has fallen below the
// live watermark (minVarRecordId), meaning its pages have been reclaimed
// by wrap-around.
var ErrDeleted = errors.New("varlog: record deleted")
