package domain

import (
	"encoding/json"
	"fmt"
)

// Profile holds the role-specific attributes of an account. Exactly one
// concrete type exists per role, so the role of an account is always the
// role of its profile.
type Profile interface {
	Role() Role
}

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewGeoPoint builds a point from longitude and latitude.
func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

type FarmerProfile struct {
	FarmName       string   `json:"farmName,omitempty"`
	FarmLocation   GeoPoint `json:"farmLocation"`
	LivestockTypes []string `json:"livestockTypes"`
	HerdSize       int      `json:"herdSize"`
	Address        string   `json:"address,omitempty"`
}

func (FarmerProfile) Role() Role { return RoleFarmer }

type VetProfile struct {
	Qualification      string   `json:"qualification,omitempty"`
	RegistrationNumber string   `json:"registrationNumber,omitempty"`
	ClinicAddress      string   `json:"clinicAddress,omitempty"`
	Verified           bool     `json:"verified"`
	AvailableSlots     []string `json:"availableSlots"`
}

func (VetProfile) Role() Role { return RoleVet }

type AdminProfile struct{}

func (AdminProfile) Role() Role { return RoleAdmin }

// NewProfile returns the empty profile for role with defaults applied.
func NewProfile(role Role) (Profile, error) {
	switch role {
	case RoleFarmer:
		return FarmerProfile{FarmLocation: NewGeoPoint(0, 0), LivestockTypes: []string{}}, nil
	case RoleVet:
		return VetProfile{AvailableSlots: []string{}}, nil
	case RoleAdmin:
		return AdminProfile{}, nil
	default:
		return nil, ErrUnknownRole
	}
}

// MarshalProfile encodes p for storage. The role is stored alongside, so
// it isn't repeated in the payload.
func MarshalProfile(p Profile) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// UnmarshalProfile decodes a stored profile for role.
func UnmarshalProfile(role Role, data []byte) (Profile, error) {
	if len(data) == 0 {
		return NewProfile(role)
	}

	var (
		p   Profile
		err error
	)
	switch role {
	case RoleFarmer:
		var fp FarmerProfile
		err = json.Unmarshal(data, &fp)
		if fp.FarmLocation.Type == "" {
			fp.FarmLocation = NewGeoPoint(fp.FarmLocation.Coordinates[0], fp.FarmLocation.Coordinates[1])
		}
		if fp.LivestockTypes == nil {
			fp.LivestockTypes = []string{}
		}
		p = fp
	case RoleVet:
		var vp VetProfile
		err = json.Unmarshal(data, &vp)
		if vp.AvailableSlots == nil {
			vp.AvailableSlots = []string{}
		}
		p = vp
	case RoleAdmin:
		p = AdminProfile{}
	default:
		return nil, ErrUnknownRole
	}
	if err != nil {
		return nil, fmt.Errorf("domain: decode %s profile: %w", role, err)
	}
	return p, nil
}

// FarmerProfilePatch carries the farmer fields a client wants changed. Nil
// means "leave as is".
type FarmerProfilePatch struct {
	FarmName       *string
	FarmLocation   *GeoPoint
	LivestockTypes []string
	HerdSize       *int
	Address        *string
}

// Apply merges patch over p.
func (p FarmerProfile) Apply(patch FarmerProfilePatch) FarmerProfile {
	if patch.FarmName != nil {
		p.FarmName = *patch.FarmName
	}
	if patch.FarmLocation != nil {
		p.FarmLocation = NewGeoPoint(patch.FarmLocation.Coordinates[0], patch.FarmLocation.Coordinates[1])
	}
	if patch.LivestockTypes != nil {
		p.LivestockTypes = append([]string(nil), patch.LivestockTypes...)
	}
	if patch.HerdSize != nil {
		p.HerdSize = *patch.HerdSize
	}
	if patch.Address != nil {
		p.Address = *patch.Address
	}
	return p
}

// VetProfilePatch has no Verified field: verification is an administrative
// action only.
type VetProfilePatch struct {
	Qualification      *string
	RegistrationNumber *string
	ClinicAddress      *string
	AvailableSlots     []string
}

// Apply merges patch over p.
func (p VetProfile) Apply(patch VetProfilePatch) VetProfile {
	if patch.Qualification != nil {
		p.Qualification = *patch.Qualification
	}
	if patch.RegistrationNumber != nil {
		p.RegistrationNumber = *patch.RegistrationNumber
	}
	if patch.ClinicAddress != nil {
		p.ClinicAddress = *patch.ClinicAddress
	}
	if patch.AvailableSlots != nil {
		p.AvailableSlots = append([]string(nil), patch.AvailableSlots...)
	}
	return p
}
