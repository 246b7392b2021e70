package core

import "errors"

var (
	// ErrNameTaken is returned by the registry when a username is already
	// bound to another live connection.
	ErrNameTaken = errors.New("username already taken")
)

// Error messages sent to clients in error frames.
const (
	MsgLoginRequired = "Login required"
	MsgNameTaken     = "Username already taken"
	MsgEmptyText     = "Message text must not be empty"
	MsgMissingTarget = "Private message requires a target"
)
