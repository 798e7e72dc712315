package controller

const (
	reasonAuthorizationFailed = "AuthorizationFailed"
	reasonReconcileErrored    = "ReconcileErrored"

	actionAuthorize = "Authorize"
	actionReconcile = "Reconcile"
)
