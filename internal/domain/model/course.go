package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxCourseTitleLen = 255
)

// CourseStatus controls the publication lifecycle of a course.
type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusPublished CourseStatus = "published"
	CourseStatusArchived  CourseStatus = "archived"
)

// Valid reports whether the course status is supported.
func (s CourseStatus) Valid() bool {
	switch s {
	case CourseStatusDraft, CourseStatusPublished, CourseStatusArchived:
		return true
	default:
		return false
	}
}

// normalizeCourseStatus trims and lowercases the input, defaulting to draft when empty.
func normalizeCourseStatus(v CourseStatus) CourseStatus {
	normalized := CourseStatus(strings.ToLower(strings.TrimSpace(string(v))))
	if normalized == "" {
		return CourseStatusDraft
	}
	return normalized
}

// ParseCourseStatus normalizes a status string and reports whether it is supported.
func ParseCourseStatus(value string) (CourseStatus, bool) {
	status := CourseStatus(strings.ToLower(strings.TrimSpace(value)))
	if status.Valid() {
		return status, true
	}
	return "", false
}

// CoursesListOptions controls paging and filtering for listing courses.
// Notes:
// - Sort supports: "created_at", "title", "price" (case-insensitive).
// - Dir supports: "asc", "desc" (case-insensitive); values are normalized internally.
// - Q matches title via ILIKE substring.
// - Status matches exactly.
type CoursesListOptions struct {
	Limit  int
	Offset int
	Q      *string       // substring match on title (ILIKE)
	Status *CourseStatus // exact match
	Sort   string        // allowed: "created_at", "title", "price"
	Dir    string        // allowed: "asc", "desc" (case-insensitive; normalized internally)
}

// Course represents a course offering managed through the admin dashboard.
type Course struct {
	ID          string       `json:"id"                    db:"id"`
	Title       string       `json:"title"                 db:"title"`
	Description *string      `json:"description,omitempty" db:"description"`
	ImageURL    *string      `json:"imageUrl,omitempty"    db:"image_url"`
	PriceCents  int          `json:"priceCents"            db:"price_cents"`
	Status      CourseStatus `json:"status"                db:"status"`
	CreatedAt   time.Time    `json:"createdAt"             db:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt"             db:"updated_at"`
}

// CreateCourseRequest represents parameters to create a Course.
type CreateCourseRequest struct {
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	ImageURL    *string      `json:"imageUrl,omitempty"`
	PriceCents  int          `json:"priceCents"`
	Status      CourseStatus `json:"status,omitempty"`
}

// UpdateCourseRequest represents parameters to update a Course.
type UpdateCourseRequest struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	ImageURL    *string       `json:"imageUrl,omitempty"`
	PriceCents  *int          `json:"priceCents,omitempty"`
	Status      *CourseStatus `json:"status,omitempty"`
}

// Validate validates CreateCourseRequest.
func (r *CreateCourseRequest) Validate() error {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return errors.New("title is required and cannot be empty")
	}
	if utf8.RuneCountInString(title) > maxCourseTitleLen {
		return errors.New("title cannot exceed 255 characters")
	}
	if r.PriceCents < 0 {
		return errors.New("priceCents must be >= 0")
	}
	r.Status = normalizeCourseStatus(r.Status)
	if !r.Status.Valid() {
		return errors.New("invalid status")
	}
	return nil
}

// HasUpdates reports whether any field is set in UpdateCourseRequest.
func (r *UpdateCourseRequest) HasUpdates() bool {
	return r.Title != nil || r.Description != nil || r.ImageURL != nil ||
		r.PriceCents != nil ||
		r.Status != nil
}

// Validate validates UpdateCourseRequest, ensuring at least one field is set and values are sane.
func (r *UpdateCourseRequest) Validate() error {
	if !r.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		if t == "" {
			return errors.New("title cannot be empty")
		}
		if utf8.RuneCountInString(t) > maxCourseTitleLen {
			return errors.New("title cannot exceed 255 characters")
		}
	}
	if r.PriceCents != nil && *r.PriceCents < 0 {
		return errors.New("priceCents must be >= 0")
	}
	if r.Status != nil {
		status := normalizeCourseStatus(*r.Status)
		if !status.Valid() {
			return errors.New("invalid status")
		}
		*r.Status = status
	}
	return nil
}
