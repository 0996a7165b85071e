package service

// Actor identifies the authenticated user performing a service operation.
// The role always comes from a verified token or the user directory, never
// from the request body.
type Actor struct {
	ID   uint
	Role string
}
