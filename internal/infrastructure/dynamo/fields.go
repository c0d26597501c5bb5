package dynamo

// DynamoDB attribute names used in update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldRoundIndex    = "round_index"
	fieldPhoneVerified = "phone_verified"
)
