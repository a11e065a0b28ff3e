package core

type (
	// User is the identity carried in a session token. Subject is the owner
	// key written to MemeRecord.CreatedBy.
	User struct {
		Subject   string `json:"subject"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatarUrl"`
		Name      string `json:"name"`
	}
)
