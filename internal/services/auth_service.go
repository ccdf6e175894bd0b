package services

import (
	"fmt"
	"log"
	"sync"

	"github.com/Hampilk/trebujton-sub000/internal/config"
	"github.com/Hampilk/trebujton-sub000/internal/utils"
	"github.com/authorizerdev/authorizer-go"
)

var (
	authMu     sync.Mutex
	authCfg    *config.Config
	authClient *authorizer.AuthorizerClient
)

// ConfigureAuthorizer stores the Authorizer settings. The client itself is
// created lazily so the service can start before Authorizer is reachable.
func ConfigureAuthorizer(cfg *config.Config) {
	authMu.Lock()
	defer authMu.Unlock()
	authCfg = cfg
}

// EnsureAuthorizer initializes the Authorizer client on first use. A failed
// attempt is retried on the next call rather than latched.
func EnsureAuthorizer(requestProtocol, requestHost string) error {
	authMu.Lock()
	defer authMu.Unlock()

	if authClient != nil {
		return nil
	}
	if authCfg == nil {
		return fmt.Errorf("authorizer not configured")
	}

	// Ping the Authorizer service first
	if err := utils.PingAuthorizer(authCfg.AuthzURL); err != nil {
		return fmt.Errorf("authorizer ping failed: %w", err)
	}

	redirectURL := fmt.Sprintf("%s://%s", requestProtocol, requestHost)
	log.Printf("Initializing Authorizer: authorizerURL=%s, clientID=%s, redirectURL=%s",
		authCfg.AuthzURL, authCfg.AuthzClientID, redirectURL)

	client, err := authorizer.NewAuthorizerClient(authCfg.AuthzClientID, authCfg.AuthzURL, redirectURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create authorizer client: %w", err)
	}
	authClient = client
	return nil
}

// ValidateSession validates a session cookie for the given roles
func ValidateSession(cookie string, roles []string) (map[string]interface{}, error) {
	authMu.Lock()
	client := authClient
	authMu.Unlock()

	if client == nil {
		return nil, fmt.Errorf("authorizer client not initialized")
	}

	rolesPtrs := make([]*string, len(roles))
	for i := range roles {
		rolesPtrs[i] = &roles[i]
	}

	res, err := client.ValidateSession(&authorizer.ValidateSessionInput{
		Cookie: cookie,
		Roles:  rolesPtrs,
	})
	if err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}

	if res == nil || !res.IsValid {
		return nil, fmt.Errorf("session is not valid")
	}

	return map[string]interface{}{
		"is_valid": res.IsValid,
		"user":     res.User,
	}, nil
}
