package model

// OperationType is the VAT sub-category of an invoice.
type OperationType string

// Operation type constants. The set is closed; anything else normalizes to OperationOther.
const (
	OperationNone                   OperationType = ""
	OperationDomesticDeductibleVAT  OperationType = "interiores_iva_deducible"
	OperationAgrarianCompensation   OperationType = "facturas_compensaciones_agrarias"
	OperationIntraCommunityGoods    OperationType = "adquisiciones_intracomunitarias_bienes"
	OperationReverseCharge          OperationType = "inversion_sujeto_pasivo"
	OperationNonDeductibleVAT       OperationType = "iva_no_deducible"
	OperationIntraCommunityServices OperationType = "adquisiciones_intracomunitarias_servicios"
	OperationImports                OperationType = "importaciones"
	OperationDisbursements          OperationType = "suplidos"
	OperationKitDigital             OperationType = "kit_digital"
	OperationTicket                 OperationType = "ticket"
	OperationNotApplicable          OperationType = "not_applicable"
	OperationOther                  OperationType = "other"
)

// OperationTypes lists the closed enumeration in prompt order.
var OperationTypes = []OperationType{
	OperationDomesticDeductibleVAT,
	OperationAgrarianCompensation,
	OperationIntraCommunityGoods,
	OperationReverseCharge,
	OperationNonDeductibleVAT,
	OperationIntraCommunityServices,
	OperationImports,
	OperationDisbursements,
	OperationKitDigital,
	OperationTicket,
	OperationNotApplicable,
	OperationOther,
}

// NormalizeOperationType maps free text onto the closed enumeration.
// Unrecognized values become OperationOther rather than failing.
func NormalizeOperationType(s string) OperationType {
	key := normalizeEnumKey(s)
	for _, op := range OperationTypes {
		if string(op) == key {
			return op
		}
	}
	return OperationOther
}

// GateOperation forces the operation for document types that never carry a
// VAT sub-category of their own.
func GateOperation(t InvoiceType, op OperationType) OperationType {
	switch t {
	case InvoiceTypeProforma, InvoiceTypeDeliveryNote, InvoiceTypeNotInvoice:
		return OperationNotApplicable
	case InvoiceTypeTicket:
		return OperationTicket
	default:
		return op
	}
}
