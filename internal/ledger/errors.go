package ledger

import "errors"

// ErrNotFound is returned by get-by-id lookups that find no row, mirroring
// the teacher's ErrCardNotFound / ErrCardCodeExists sentinel pattern.
var ErrNotFound = errors.New("ledger: not found")

// ErrAlreadyExists is returned by UpdateSendTerminal when the send has
// already left status 'pending'.
var ErrAlreadyExists = errors.New("ledger: already exists")
