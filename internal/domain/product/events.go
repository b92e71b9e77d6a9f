package product

// AggregateType is the aggregate type carried on product events.
const AggregateType = "product"

// Product event types.
const (
	EventCreated           = "product.created"
	EventUpdated           = "product.updated"
	EventHandleChanged     = "product.handle_changed"
	EventVariantAdded      = "product.variant_added"
	EventVariantUpdated    = "product.variant_updated"
	EventVariantRemoved    = "product.variant_removed"
	EventInventoryAdjusted = "product.inventory_adjusted"
	EventPublished         = "product.published"
	EventDeactivated       = "product.deactivated"
	EventReactivated       = "product.reactivated"
	EventArchived          = "product.archived"
	EventCategoryAssigned  = "product.category_assigned"
	EventCategoryRemoved   = "product.category_removed"
	EventImageAdded        = "product.image_added"
	EventImageRemoved      = "product.image_removed"
	EventImagesReordered   = "product.images_reordered"
	EventTagsChanged       = "product.tags_changed"
	EventSEOUpdated        = "product.seo_updated"
)

// Business rules raised by the product aggregate.
const (
	RuleNoVariants            = "no_variants"
	RuleAlreadyPublished      = "already_published"
	RuleLastVariant           = "last_variant"
	RuleProductArchived       = "product_archived"
	RuleNotActive             = "product_not_active"
	RuleNotInactive           = "product_not_inactive"
	RuleInsufficientInventory = "insufficient_inventory"
	RuleMaxVariantsExceeded   = "max_variants_exceeded"
	RuleMaxImagesExceeded     = "max_images_exceeded"
	RuleMaxTagsExceeded       = "max_tags_exceeded"
)
