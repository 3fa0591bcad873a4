package models

// PaystackPayment tracks a payment session opened with Paystack.
type PaystackPayment struct {
	BaseModel
	Email     string `json:"email"`
	Amount    int64  `json:"amount"` // minor units
	Reference string `gorm:"size:100;uniqueIndex" json:"reference"`
	Status    string `gorm:"index" json:"status"`
}

// PaystackEvent is a raw webhook event as delivered by Paystack.
type PaystackEvent struct {
	BaseModel
	Event string `gorm:"index" json:"event"`
	Data  string `gorm:"type:text" json:"data"`
}
