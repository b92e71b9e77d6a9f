package identity

// Marker types, one per entity kind.
type (
	CartKind            struct{}
	CartItemKind        struct{}
	DiscountKind        struct{}
	ProductKind         struct{}
	ProductVariantKind  struct{}
	ProductCategoryKind struct{}
	ProductImageKind    struct{}
	UserKind            struct{}
	SessionKind         struct{}
)

func (CartKind) kindName() string            { return "cart" }
func (CartItemKind) kindName() string        { return "cart_item" }
func (DiscountKind) kindName() string        { return "discount" }
func (ProductKind) kindName() string         { return "product" }
func (ProductVariantKind) kindName() string  { return "product_variant" }
func (ProductCategoryKind) kindName() string { return "product_category" }
func (ProductImageKind) kindName() string    { return "product_image" }
func (UserKind) kindName() string            { return "user" }
func (SessionKind) kindName() string         { return "session" }

type (
	CartID            = ID[CartKind]
	CartItemID        = ID[CartItemKind]
	DiscountID        = ID[DiscountKind]
	ProductID         = ID[ProductKind]
	ProductVariantID  = ID[ProductVariantKind]
	ProductCategoryID = ID[ProductCategoryKind]
	ProductImageID    = ID[ProductImageKind]
	UserID            = ID[UserKind]
	SessionID         = ID[SessionKind]
)

func NewCartID(raw string) (CartID, error)                       { return New[CartKind](raw) }
func NewCartItemID(raw string) (CartItemID, error)               { return New[CartItemKind](raw) }
func NewDiscountID(raw string) (DiscountID, error)               { return New[DiscountKind](raw) }
func NewProductID(raw string) (ProductID, error)                 { return New[ProductKind](raw) }
func NewProductVariantID(raw string) (ProductVariantID, error)   { return New[ProductVariantKind](raw) }
func NewProductCategoryID(raw string) (ProductCategoryID, error) { return New[ProductCategoryKind](raw) }
func NewProductImageID(raw string) (ProductImageID, error)       { return New[ProductImageKind](raw) }
func NewUserID(raw string) (UserID, error)                       { return New[UserKind](raw) }
func NewSessionID(raw string) (SessionID, error)                 { return New[SessionKind](raw) }
