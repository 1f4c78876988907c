package azcli

import (
	"context"
	"fmt"
)

// StatusKind tells a consumer which part of the display an update is for.
type StatusKind string

const (
	// StatusLogin updates the login line.
	StatusLogin StatusKind = "login"
	// StatusSubscriptions updates the subscriptions pane with a progress message.
	StatusSubscriptions StatusKind = "subscriptions"
	// StatusInventory carries the finished inventory.
	StatusInventory StatusKind = "inventory"
)

// Messages shown while the status check runs.
const (
	MsgNotLoggedIn          = "Not logged in"
	MsgCheckingLogin        = "Checking login status..."
	MsgFetchingSubscription = "Fetching Subscriptions..."
	MsgSubscriptionsFailed  = "Failed to retrieve subscriptions"
)

// StatusUpdate is one message from the background status check.
type StatusUpdate struct {
	Kind      StatusKind           `json:"kind"`
	Message   string               `json:"message"`
	Account   *Account             `json:"account,omitempty"`
	Inventory []SubscriptionVaults `json:"inventory,omitempty"`
	Err       error                `json:"-"`
}

// CheckStatus runs the login and inventory lookups in a goroutine and
// reports progress on the returned channel, which is closed when the check
// is done. Consumers own all presentation; the worker only sends.
func CheckStatus(ctx context.Context, client *Client, refresh bool) <-chan StatusUpdate {
	updates := make(chan StatusUpdate, 4)

	go func() {
		defer close(updates)

		send := func(u StatusUpdate) bool {
			select {
			case updates <- u:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(StatusUpdate{Kind: StatusLogin, Message: MsgCheckingLogin}) {
			return
		}

		account, err := client.Account(ctx)
		if err != nil {
			send(StatusUpdate{Kind: StatusLogin, Message: MsgNotLoggedIn, Err: err})
			return
		}
		if !send(StatusUpdate{Kind: StatusLogin, Message: LoggedInMessage(account), Account: account}) {
			return
		}

		if !send(StatusUpdate{Kind: StatusSubscriptions, Message: MsgFetchingSubscription}) {
			return
		}

		inventory, err := client.Inventory(ctx, refresh)
		if err != nil {
			send(StatusUpdate{Kind: StatusSubscriptions, Message: MsgSubscriptionsFailed, Err: err})
			return
		}
		send(StatusUpdate{Kind: StatusInventory, Message: FormatInventory(inventory), Inventory: inventory})
	}()

	return updates
}

// LoggedInMessage is the login line for account.
func LoggedInMessage(account *Account) string {
	return fmt.Sprintf("Logged in as %s", account.User.Name)
}

// FormatInventory renders the subscriptions pane: each subscription name
// followed by its vaults, one per line.
func FormatInventory(inventory []SubscriptionVaults) string {
	var text string
	for _, sub := range inventory {
		text += sub.Subscription.Name + ":\n"
		for _, vault := range sub.Vaults {
			text += "  - " + vault + "\n"
		}
	}
	return text
}
