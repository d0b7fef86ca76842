package authsdk

import "time"

// GeoPoint is a GeoJSON point, coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type FarmerProfile struct {
	FarmName       string   `json:"farmName,omitempty"`
	FarmLocation   GeoPoint `json:"farmLocation"`
	LivestockTypes []string `json:"livestockTypes"`
	HerdSize       int      `json:"herdSize"`
	Address        string   `json:"address,omitempty"`
}

type VetProfile struct {
	Qualification      string   `json:"qualification,omitempty"`
	RegistrationNumber string   `json:"registrationNumber,omitempty"`
	ClinicAddress      string   `json:"clinicAddress,omitempty"`
	Verified           bool     `json:"verified"`
	AvailableSlots     []string `json:"availableSlots"`
}

// User is an account as the API exposes it. At most one of FarmerProfile and
// VetProfile is set, matching Role.
type User struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	FullName      string         `json:"fullName"`
	Role          string         `json:"role"`
	Phone         string         `json:"phone"`
	Language      string         `json:"language"`
	FarmerProfile *FarmerProfile `json:"farmerProfile,omitempty"`
	VetProfile    *VetProfile    `json:"vetProfile,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// FarmerProfileInput carries farmer attributes on register and update.
// Absent fields are left unchanged on update.
type FarmerProfileInput struct {
	FarmName       *string   `json:"farmName,omitempty"`
	FarmLocation   *GeoPoint `json:"farmLocation,omitempty"`
	LivestockTypes []string  `json:"livestockTypes,omitempty"`
	HerdSize       *int      `json:"herdSize,omitempty" validate:"omitempty,min=0"`
	Address        *string   `json:"address,omitempty"`
}

// VetProfileInput carries vet attributes. There is no way to set the
// verified flag from here.
type VetProfileInput struct {
	Qualification      *string  `json:"qualification,omitempty"`
	RegistrationNumber *string  `json:"registrationNumber,omitempty"`
	ClinicAddress      *string  `json:"clinicAddress,omitempty"`
	AvailableSlots     []string `json:"availableSlots,omitempty"`
}

type RegisterRequest struct {
	Email         string              `json:"email" validate:"required,email"`
	Password      string              `json:"password" validate:"required,min=6"`
	FullName      string              `json:"fullName" validate:"required,min=2"`
	Phone         string              `json:"phone" validate:"required,phone"`
	Role          string              `json:"role" validate:"required,oneof=farmer vet admin"`
	Language      string              `json:"language,omitempty" validate:"omitempty,language"`
	FarmerProfile *FarmerProfileInput `json:"farmerProfile,omitempty" validate:"omitempty"`
	VetProfile    *VetProfileInput    `json:"vetProfile,omitempty" validate:"omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login. The refresh token is only
// ever sent as a cookie.
type AuthResponse struct {
	Message     string `json:"message"`
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

// TokenResponse is returned by refresh and password change.
type TokenResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UserResponse struct {
	Message string `json:"message,omitempty"`
	User    User   `json:"user"`
}

type Pagination struct {
	Current int `json:"current"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
}

type UsersResponse struct {
	Users      []User     `json:"users"`
	Pagination Pagination `json:"pagination"`
}

type UpdateProfileRequest struct {
	FullName      *string             `json:"fullName,omitempty" validate:"omitempty,min=2"`
	Phone         *string             `json:"phone,omitempty" validate:"omitempty,phone"`
	Language      *string             `json:"language,omitempty" validate:"omitempty,language"`
	FarmerProfile *FarmerProfileInput `json:"farmerProfile,omitempty" validate:"omitempty"`
	VetProfile    *VetProfileInput    `json:"vetProfile,omitempty" validate:"omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

type VerificationRequest struct {
	Verified bool `json:"verified"`
}

// HealthResponse represents the response from health check endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks holds the individual readiness checks.
type HealthChecks struct {
	Database string `json:"database"`
	Sessions string `json:"sessions"`
}
