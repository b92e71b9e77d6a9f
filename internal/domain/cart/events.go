package cart

// Aggregate type names carried on events.
const (
	AggregateType     = "cart"
	AggregateTypeItem = "cart_item"
)

// Cart event types.
const (
	EventCreated             = "cart.created"
	EventItemAdded           = "cart.item_added"
	EventItemRemoved         = "cart.item_removed"
	EventItemQuantityUpdated = "cart.item_quantity_updated"
	EventDiscountApplied     = "cart.discount_applied"
	EventDiscountRemoved     = "cart.discount_removed"
	EventShippingUpdated     = "cart.shipping_updated"
	EventNotesUpdated        = "cart.notes_updated"
	EventAssignedToUser      = "cart.assigned_to_user"
	EventCleared             = "cart.cleared"
	EventAbandoned           = "cart.abandoned"
	EventCompleted           = "cart.completed"
	EventExpired             = "cart.expired"

	// EventItemQuantityChanged is queued on the item itself.
	EventItemQuantityChanged = "cart.item.quantity_changed"
)

// Business rules raised by the cart.
const (
	RuleMaxQuantityExceeded   = "max_quantity_exceeded"
	RuleMaxItemsExceeded      = "max_items_exceeded"
	RuleCartNotActive         = "cart_not_active"
	RuleCartExpired           = "cart_expired"
	RuleCartCompleted         = "cart_completed"
	RuleEmptyCart             = "empty_cart"
	RuleDiscountApplied       = "discount_already_applied"
	RuleMinimumAmountNotMet   = "minimum_amount_not_met"
	RuleCartAlreadyOwned      = "cart_already_owned"
	RuleOwnerOrSessionMissing = "owner_or_session_required"
)
