package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityCron                        // Service role key or cron secret
	SecurityAccess                      // User access token required
)

// RouteSecurityConfig maps route names to their required security level
var RouteSecurityConfig = map[string]SecurityLevel{
	"healthz": SecurityPublic,

	// Email provider webhook; signature verification happens upstream
	"email-reply-webhook": SecurityPublic,

	"account-lifecycle": SecurityCron,

	"manage-profile-sequence": SecurityAccess,
	"change-profile-stage":    SecurityAccess,
	"list-profile-queue":      SecurityAccess,
	"list-sequences":          SecurityAccess,
}

// GetSecurityLevel returns the security level for a given route name
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := RouteSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown routes
	return SecurityAccess
}
