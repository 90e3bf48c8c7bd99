package auth

// Scopes granted to dashboard API clients.
const (
	ScopeActivitiesWrite = "activities:write"
	ScopeActivitiesRead  = "activities:read"
)
