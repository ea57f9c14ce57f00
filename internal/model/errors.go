package model

import "errors"

// ErrDuplicateIngest is returned by stores when an ingest record with the
// same provider message id already exists. The pipeline treats it as a
// successful no-op: the message was already handled.
var ErrDuplicateIngest = errors.New("duplicate provider message id")
