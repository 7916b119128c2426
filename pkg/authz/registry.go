package authz

const (
	RoleAnonymous = "anonymous"
	RoleOperator  = "operator"
	RoleAdmin     = "admin"
)

const (
	ActionRead  = "read"
	ActionAdmin = "admin"
)

const (
	ObjectDevFeatureFlags = "dev.feature-flags"
	ObjectDevSeed         = "dev.seed"
)
