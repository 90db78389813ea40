package seed

import (
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"kotoba_backend/internal/model"
)

// SeedVouchers installs the launch discount codes. Voucher management
// has no admin surface yet, so codes ship with the database.
func SeedVouchers(db *gorm.DB) {
	until := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	vouchers := []model.Voucher{
		{
			Code:            "LAUNCH20",
			Description:     "20% off any paid plan",
			DiscountType:    model.DiscountPercent,
			DiscountValue:   20,
			ApplicableTiers: datatypes.JSON([]byte(`[]`)),
			MaxRedemptions:  500,
			MaxPerUser:      1,
			IsActive:        true,
			ValidUntil:      &until,
		},
		{
			Code:              "PRO-YEAR-30",
			Description:       "30% off PRO for annual commitments",
			DiscountType:      model.DiscountPercent,
			DiscountValue:     30,
			ApplicableTiers:   datatypes.JSON([]byte(`["PRO"]`)),
			MaxPerUser:        1,
			MinDurationMonths: 12,
			IsActive:          true,
			ValidUntil:        &until,
		},
		{
			Code:            "NIHONGO5",
			Description:     "$5 off your first month",
			DiscountType:    model.DiscountFixed,
			DiscountValue:   5,
			ApplicableTiers: datatypes.JSON([]byte(`["BASIC","PRO"]`)),
			MaxPerUser:      1,
			IsActive:        true,
		},
	}

	for _, voucher := range vouchers {
		result := db.FirstOrCreate(&voucher, model.Voucher{Code: voucher.Code})
		if result.Error != nil {
			log.Printf("Error creating voucher %s: %v", voucher.Code, result.Error)
		}
	}

	log.Println("Vouchers seeded successfully!")
}
