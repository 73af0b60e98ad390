package directory

import "context"

// StaticClient implements Client with a fixed loginID -> password map.
// Used in tests and the quick-start binary.
type StaticClient struct {
	Accounts map[string]string
}

// NewStaticClient creates a static directory client
func NewStaticClient(accounts map[string]string) *StaticClient {
	return &StaticClient{Accounts: accounts}
}

// Authenticate implements Client.Authenticate
func (c *StaticClient) Authenticate(ctx context.Context, loginID, password string) error {
	stored, ok := c.Accounts[loginID]
	if !ok || password == "" || stored != password {
		return ErrBindFailed
	}
	return nil
}
