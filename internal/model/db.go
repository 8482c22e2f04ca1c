package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Antiquarian{}, &Work{}, &WorkLink{}, &Book{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Fragment{}, &Testimonium{}, &AnonymousFragment{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&FragmentLink{}, &TestimoniumLink{}, &AppositumLink{}); err != nil {
		return err
	}

	return nil
}
