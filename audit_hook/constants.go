package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionAccountCreated = "account.created"

	// Accrual actions
	ActionPointsGranted = "points.granted"

	// Redemption actions
	ActionRedemptionIssued    = "redemption.issued"
	ActionRedemptionConsumed  = "redemption.consumed"
	ActionRedemptionCancelled = "redemption.cancelled"

	// Commission actions
	ActionCommissionGranted = "commission.granted"

	// Offer actions
	ActionOfferCreated     = "offer.created"
	ActionOfferDeactivated = "offer.deactivated"
)

// Resource constants for audit events.
const (
	ResourceAccount    = "account"
	ResourceAccrual    = "accrual"
	ResourceRedemption = "redemption"
	ResourceCommission = "commission"
	ResourceOffer      = "offer"
)

// Category constants for audit events.
const (
	CategoryLedger     = "ledger"
	CategoryRedemption = "redemption"
	CategoryReferral   = "referral"
	CategoryCatalog    = "catalog"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
