package services

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gsPatrick/finance-os/internal/apperr"
	"github.com/gsPatrick/finance-os/models"
)

// AccountService manages cash and credit-card accounts. Balances are
// never set through this service: they are owned by the ledger impact
// applier.
type AccountService struct {
	db *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{db: db}
}

// CreateAccountInput carries the account attributes. Card configuration
// is only valid on credit cards and an opening balance only on cash
// accounts.
type CreateAccountInput struct {
	Name           string             `json:"name" binding:"required"`
	Type           models.AccountType `json:"type" binding:"required,oneof=cash credit_card"`
	InitialBalance *decimal.Decimal   `json:"initialBalance"`
	Brand          string             `json:"brand"`
	FinalDigits    string             `json:"finalDigits"`
	Color          string             `json:"color"`
	Icon           string             `json:"icon"`
	CreditLimit    *decimal.Decimal   `json:"creditLimit"`
	ClosingDay     *int               `json:"closingDay"`
	DueDay         *int               `json:"dueDay"`
}

// CreateAccount creates an account, enforcing the field split between
// the two account kinds.
func (s *AccountService) CreateAccount(userID uint, in CreateAccountInput) (*models.Account, error) {
	switch in.Type {
	case models.AccountTypeCash:
		if in.CreditLimit != nil || in.ClosingDay != nil || in.DueDay != nil {
			return nil, apperr.BadRequest("creditLimit/closingDay/dueDay are only valid on credit cards")
		}
	case models.AccountTypeCreditCard:
		if in.InitialBalance != nil {
			return nil, apperr.BadRequest("credit cards do not carry a balance")
		}
		if err := validateCardDay(in.ClosingDay); err != nil {
			return nil, err
		}
		if err := validateCardDay(in.DueDay); err != nil {
			return nil, err
		}
	}

	account := models.Account{
		UserID:      userID,
		Name:        in.Name,
		Type:        in.Type,
		Brand:       in.Brand,
		FinalDigits: in.FinalDigits,
		Color:       in.Color,
		Icon:        in.Icon,
		CreditLimit: in.CreditLimit,
		ClosingDay:  in.ClosingDay,
		DueDay:      in.DueDay,
	}
	if in.InitialBalance != nil {
		account.Balance = *in.InitialBalance
	}
	if err := s.db.Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// ListAccounts returns every account of the user.
func (s *AccountService) ListAccounts(userID uint) ([]models.Account, error) {
	var accounts []models.Account
	err := s.db.Where("user_id = ?", userID).Order("name ASC").Find(&accounts).Error
	return accounts, err
}

// GetAccount returns one account owned by the user.
func (s *AccountService) GetAccount(userID, accountID uint) (*models.Account, error) {
	var account models.Account
	err := s.db.Where("id = ? AND user_id = ?", accountID, userID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("account not found")
	} else if err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateAccountInput patches presentation and card configuration. The
// account type and balance are immutable here.
type UpdateAccountInput struct {
	Name        *string          `json:"name"`
	Brand       *string          `json:"brand"`
	FinalDigits *string          `json:"finalDigits"`
	Color       *string          `json:"color"`
	Icon        *string          `json:"icon"`
	CreditLimit *decimal.Decimal `json:"creditLimit"`
	ClosingDay  *int             `json:"closingDay"`
	DueDay      *int             `json:"dueDay"`
}

func (s *AccountService) UpdateAccount(userID, accountID uint, in UpdateAccountInput) (*models.Account, error) {
	account, err := s.GetAccount(userID, accountID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Brand != nil {
		updates["brand"] = *in.Brand
	}
	if in.FinalDigits != nil {
		updates["final_digits"] = *in.FinalDigits
	}
	if in.Color != nil {
		updates["color"] = *in.Color
	}
	if in.Icon != nil {
		updates["icon"] = *in.Icon
	}
	if in.CreditLimit != nil || in.ClosingDay != nil || in.DueDay != nil {
		if !account.IsCreditCard() {
			return nil, apperr.BadRequest("creditLimit/closingDay/dueDay are only valid on credit cards")
		}
		if in.CreditLimit != nil {
			updates["credit_limit"] = *in.CreditLimit
		}
		if in.ClosingDay != nil {
			if err := validateCardDay(in.ClosingDay); err != nil {
				return nil, err
			}
			updates["closing_day"] = *in.ClosingDay
		}
		if in.DueDay != nil {
			if err := validateCardDay(in.DueDay); err != nil {
				return nil, err
			}
			updates["due_day"] = *in.DueDay
		}
	}

	if len(updates) > 0 {
		if err := s.db.Model(account).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetAccount(userID, accountID)
}

// DeleteAccount removes an account that has no transactions left.
func (s *AccountService) DeleteAccount(userID, accountID uint) error {
	account, err := s.GetAccount(userID, accountID)
	if err != nil {
		return err
	}

	var count int64
	if err := s.db.Model(&models.Transaction{}).Where("account_id = ?", accountID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperr.BadRequest("account still has transactions; delete or move them first")
	}
	return s.db.Delete(account).Error
}

func validateCardDay(day *int) error {
	if day == nil {
		return nil
	}
	if *day < 1 || *day > 31 {
		return apperr.BadRequest("closingDay/dueDay must be between 1 and 31")
	}
	return nil
}
