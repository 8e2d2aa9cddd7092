package settlement

// PartyRole distinguishes the two mirrored sides of the settlement engine:
// receivables track money owed by customers, payables track money owed to
// suppliers. The engine is otherwise identical for both sides.
type PartyRole string

const (
	RoleReceivable PartyRole = "RECEIVABLE"
	RolePayable    PartyRole = "PAYABLE"
)

// IsValid returns true if the role is a known value
func (r PartyRole) IsValid() bool {
	return r == RoleReceivable || r == RolePayable
}

// DebtNumberPrefix returns the document number prefix for debts of this role
func (r PartyRole) DebtNumberPrefix() string {
	if r == RolePayable {
		return "AP"
	}
	return "AR"
}

// PaymentNumberPrefix returns the document number prefix for payments of this role
func (r PartyRole) PaymentNumberPrefix() string {
	if r == RolePayable {
		return "PY"
	}
	return "RC"
}
