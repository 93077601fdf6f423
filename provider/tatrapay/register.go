package tatrapay

import "github.com/paygate-sk/tatrapay/provider"

// Register the TatraPayPlus provider with the gateway registry
func init() {
	provider.Register("tatrapay", NewProvider)
}
