package permissions

// Field identifies an editable control on the purchase request item form.
type Field string

const (
	FieldLocation      Field = "location"
	FieldProduct       Field = "product"
	FieldComment       Field = "comment"
	FieldRequestQty    Field = "requestQty"
	FieldRequestUnit   Field = "requestUnit"
	FieldRequiredDate  Field = "requiredDate"
	FieldDeliveryPoint Field = "deliveryPoint"
	FieldApprovedQty   Field = "approvedQty"
	FieldVendor        Field = "vendor"
	FieldPricelist     Field = "pricelist"
	FieldPrice         Field = "price"
	FieldOrderUnit     Field = "orderUnit"
)

// Mode is the form presentation mode.
type Mode string

const (
	ModeView Mode = "view"
	ModeEdit Mode = "edit"
	ModeAdd  Mode = "add"
)

// fieldGrants maps each field to the capabilities allowed to edit it.
// A field absent from the table is not editable by anyone (fail-closed);
// an empty set means the field is known but locked for every role.
var fieldGrants = map[Field]map[Capability]bool{
	FieldLocation:      {CapabilityRequestor: true},
	FieldProduct:       {CapabilityRequestor: true},
	FieldRequestQty:    {CapabilityRequestor: true},
	FieldRequestUnit:   {CapabilityRequestor: true},
	FieldRequiredDate:  {CapabilityRequestor: true},
	FieldDeliveryPoint: {CapabilityRequestor: true},
	FieldApprovedQty:   {CapabilityApprover: true},
	FieldVendor:        {CapabilityPurchaser: true},
	FieldPricelist:     {CapabilityPurchaser: true},
	FieldPrice:         {CapabilityPurchaser: true},
	FieldOrderUnit:     {},
}

// openFields are editable by any actor as long as the form is not in view
// mode. Comments stay open so every participant can annotate a line.
var openFields = map[Field]bool{
	FieldComment: true,
}

// IsFieldEditable decides whether a field can be edited by the given
// capability in the given mode. View mode is always read-only and unknown
// fields resolve to false.
func IsFieldEditable(field Field, cap Capability, mode Mode) bool {
	if mode != ModeEdit && mode != ModeAdd {
		return false
	}
	if openFields[field] {
		return true
	}
	grants, ok := fieldGrants[field]
	if !ok {
		return false
	}
	return grants[cap]
}
