package http

import (
	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
	"github.com/herdwatch/herdwatch/internal/herdwatch/service"
	"github.com/herdwatch/herdwatch/pkg/authsdk"
)

func toUser(acc domain.Account) authsdk.User {
	u := authsdk.User{
		ID:        acc.ID,
		Email:     acc.Email,
		FullName:  acc.FullName,
		Role:      acc.Role().String(),
		Phone:     acc.Phone,
		Language:  acc.Language,
		CreatedAt: acc.CreatedAt,
		UpdatedAt: acc.UpdatedAt,
	}

	switch p := acc.Profile.(type) {
	case domain.FarmerProfile:
		u.FarmerProfile = &authsdk.FarmerProfile{
			FarmName:       p.FarmName,
			FarmLocation:   authsdk.GeoPoint(p.FarmLocation),
			LivestockTypes: p.LivestockTypes,
			HerdSize:       p.HerdSize,
			Address:        p.Address,
		}
	case domain.VetProfile:
		u.VetProfile = &authsdk.VetProfile{
			Qualification:      p.Qualification,
			RegistrationNumber: p.RegistrationNumber,
			ClinicAddress:      p.ClinicAddress,
			Verified:           p.Verified,
			AvailableSlots:     p.AvailableSlots,
		}
	}
	return u
}

func toUsers(page service.AccountPage) authsdk.UsersResponse {
	users := make([]authsdk.User, 0, len(page.Accounts))
	for _, acc := range page.Accounts {
		users = append(users, toUser(acc))
	}
	return authsdk.UsersResponse{
		Users: users,
		Pagination: authsdk.Pagination{
			Current: page.Page,
			Pages:   page.Pages,
			Total:   page.Total,
		},
	}
}

func farmerPatch(in *authsdk.FarmerProfileInput) *domain.FarmerProfilePatch {
	if in == nil {
		return nil
	}
	p := &domain.FarmerProfilePatch{
		FarmName:       in.FarmName,
		LivestockTypes: in.LivestockTypes,
		HerdSize:       in.HerdSize,
		Address:        in.Address,
	}
	if in.FarmLocation != nil {
		loc := domain.GeoPoint(*in.FarmLocation)
		p.FarmLocation = &loc
	}
	return p
}

func vetPatch(in *authsdk.VetProfileInput) *domain.VetProfilePatch {
	if in == nil {
		return nil
	}
	return &domain.VetProfilePatch{
		Qualification:      in.Qualification,
		RegistrationNumber: in.RegistrationNumber,
		ClinicAddress:      in.ClinicAddress,
		AvailableSlots:     in.AvailableSlots,
	}
}
