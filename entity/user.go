package entity

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"madrasah-backend/errs"
)

const EmailField = "email"

// ProfileFields lists the keys a user may change about themselves through the
// profile update. Role and email are deliberately absent.
var ProfileFields = []string{
	"name", "photoURL", "phone", "address", "bio", "gender", "dateOfBirth",
	"bloodGroup", "fatherName", "motherName", "guardianPhone",
	"class", "section", "roll", "session",
	"department", "designation", "qualification", "subject", "joiningDate",
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
	profileSet   = func() map[string]struct{} {
		m := make(map[string]struct{}, len(ProfileFields))
		for _, f := range ProfileFields {
			m[f] = struct{}{}
		}
		return m
	}()
)

func userValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return Role(fl.Field().String()).Valid()
		})
	})
	return validate
}

// EmailOf returns the email of a user document, if it holds a string.
func EmailOf(d Document) (string, bool) {
	s, ok := d[EmailField].(string)
	return s, ok
}

func checkEmail(d Document, required bool) error {
	raw, present := d[EmailField]
	if !present {
		if required {
			return errs.ErrEmailRequired
		}
		return nil
	}
	email, ok := raw.(string)
	if !ok {
		return errs.ErrEmailAddressFormat
	}
	if email == "" {
		return errs.ErrEmailRequired
	}
	if err := userValidator().Var(email, "email"); err != nil {
		return errs.ErrEmailAddressFormat
	}
	return nil
}

func checkRole(d Document) error {
	raw, present := d[RoleField]
	if !present {
		return nil
	}
	role, ok := raw.(string)
	if !ok {
		return errs.ErrInvalidRole
	}
	if err := userValidator().Var(role, "role"); err != nil {
		return errs.ErrInvalidRole
	}
	return nil
}

// ValidateNewUser checks a candidate user before insert: a well formed email
// is required and a role, when given, must be one of Roles.
func ValidateNewUser(d Document) error {
	if d == nil {
		return errs.ErrInvalidBody
	}
	if err := checkEmail(d, true); err != nil {
		return err
	}
	return checkRole(d)
}

// MergePatch prepares a whole-body $set. The identifier is never patched.
func MergePatch(body Document) (Document, error) {
	patch := Clone(body)
	delete(patch, IDField)
	if len(patch) == 0 {
		return nil, errs.ErrNothingToUpdate
	}
	if err := checkEmail(patch, false); err != nil {
		return nil, err
	}
	if err := checkRole(patch); err != nil {
		return nil, err
	}
	return patch, nil
}

// ProfilePatch keeps only the allow-listed profile keys of body.
func ProfilePatch(body Document) (Document, error) {
	patch := Document{}
	for k, val := range body {
		if _, ok := profileSet[k]; ok {
			patch[k] = val
		}
	}
	if len(patch) == 0 {
		return nil, errs.ErrNothingToUpdate
	}
	return patch, nil
}
