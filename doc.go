// Package tatrapay is a payment gateway integration service for the
// TatraPayPlus banking API.
//
// It exposes a small HTTP surface for creating payments (card redirect or
// bank transfer), receiving the browser return callback and the gateway's
// asynchronous webhook notifications, and translating gateway responses
// into a stable internal contract.
//
// # Payment flow
//
//	┌─────────────┐    ┌──────────────────┐    ┌─────────────────┐
//	│             │    │                  │    │                 │
//	│  Web shop   │◄──►│  tatrapay svc    │◄──►│  TatraPayPlus   │
//	│  (browser)  │    │  (this service)  │    │  gateway        │
//	│             │    │                  │    │                 │
//	└─────────────┘    └──────────────────┘    └─────────────────┘
//
// The shop posts to /api/payment/create, the customer pays at the gateway
// (card redirect) or via bank transfer instructions, the gateway redirects
// the browser back to /api/payment/callback and independently notifies
// /api/payment/webhook. The webhook handler never trusts the delivered
// payload; it re-fetches the authoritative status from the gateway.
//
// The service is organized as:
//
//   - provider: domain types, the PaymentProvider interface, the shared
//     HTTP client and the ISO 20022 status classification helpers
//   - provider/tatrapay: the TatraPayPlus client with OAuth2 token caching
//   - handler: HTTP handlers for create/callback/webhook and health
//   - store: order to payment-id mapping (memory and SQLite backed)
//   - infra: configuration, logging, middleware and response helpers
package tatrapay
