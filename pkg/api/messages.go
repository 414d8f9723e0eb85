// Package api defines the groupsplit.v1 wire messages and the Connect
// handler and client constructors for the three services.
//
// Messages are plain Go structs carried as JSON. Users are addressed by
// username, groups and expenses by ID. Money is a decimal string with two
// fixed places, timestamps are RFC 3339.
package api

// User is a registered account as other users see it.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	CreatedAt string `json:"created_at"`
	LastLogin string `json:"last_login,omitempty"`
}

type RegisterRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password1 string `json:"password1"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
	Access  string `json:"access"`
	// Refresh is also set as the refresh_token cookie.
	Refresh string `json:"refresh"`
	User    *User  `json:"user"`
}

// RefreshRequest falls back to the refresh_token cookie when Refresh is empty.
type RefreshRequest struct {
	Refresh string `json:"refresh,omitempty"`
}

type RefreshResponse struct {
	Access string `json:"access"`
}

type LogoutRequest struct{}

type LogoutResponse struct {
	Message string `json:"message"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}

// Group is a group with its member usernames ordered alphabetically.
type Group struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
	CreatedAt   string   `json:"created_at"`
}

type CreateGroupRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
}

type CreateGroupResponse struct {
	Group *Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"group_id"`
}

type GetGroupResponse struct {
	Group *Group `json:"group"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []*Group `json:"groups"`
}

// UpdateGroupRequest replaces name and description. Members are managed
// with AddMember and RemoveMember.
type UpdateGroupRequest struct {
	GroupID     string `json:"group_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateGroupResponse struct {
	Group *Group `json:"group"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"group_id"`
}

type DeleteGroupResponse struct{}

type AddMemberRequest struct {
	GroupID  string `json:"group_id"`
	Username string `json:"username"`
}

type AddMemberResponse struct {
	Group *Group `json:"group"`
}

type RemoveMemberRequest struct {
	GroupID  string `json:"group_id"`
	Username string `json:"username"`
}

type RemoveMemberResponse struct {
	Group *Group `json:"group"`
}

// Share is one member's part of an expense.
type Share struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Share    string `json:"share"`
	Net      string `json:"net"`
}

type Expense struct {
	ID          string   `json:"id"`
	GroupID     string   `json:"group_id"`
	GroupName   string   `json:"group_name"`
	Description string   `json:"description"`
	Amount      string   `json:"amount"`
	PaidBy      string   `json:"paid_by"`
	SplitAmong  []string `json:"split_among"`
	CreatedBy   string   `json:"created_by"`
	CreatedAt   string   `json:"created_at"`
	// Shares lists the payer first, then each split member.
	Shares []*Share `json:"shares"`
}

type CreateExpenseRequest struct {
	GroupID     string   `json:"group_id"`
	Description string   `json:"description"`
	Amount      Amount   `json:"amount"`
	PaidBy      string   `json:"paid_by"`
	SplitAmong  []string `json:"split_among"`
}

type CreateExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type GetExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type GetExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

// ListExpensesRequest lists one group's expenses, or all when GroupID is empty.
type ListExpensesRequest struct {
	GroupID string `json:"group_id,omitempty"`
}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type DeleteExpenseResponse struct{}

type ListUserExpensesRequest struct{}

// UserExpense is an expense seen from the calling user's side.
type UserExpense struct {
	ID          string   `json:"id"`
	GroupID     string   `json:"group_id"`
	Group       string   `json:"group"`
	Description string   `json:"description"`
	Amount      string   `json:"amount"`
	PaidBy      string   `json:"paid_by"`
	SplitAmong  []string `json:"split_among"`
	UserShare   string   `json:"user_share"`

	// PaidToOrBy is "Paid By" or "Paid To <payer>"; nil when uninvolved.
	PaidToOrBy           *string `json:"paid_to_or_by"`
	AmountToReceiveOrPay string  `json:"amount_to_receive_or_pay"`
	Role                 string  `json:"role"`
}

type ListUserExpensesResponse struct {
	Expenses []*UserExpense `json:"expenses"`
}

type GetUserBalanceRequest struct{}

type GetUserBalanceResponse struct {
	Receivable       string `json:"receivable"`
	Payable          string `json:"payable"`
	Net              string `json:"net"`
	ExpenseCount     int32  `json:"expense_count"`
	PaidCount        int32  `json:"paid_count"`
	ParticipantCount int32  `json:"participant_count"`
}
