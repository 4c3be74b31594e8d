package model

// Account is a registered identity. Username is the account's key and is
// globally unique; Credential is compared as stored (plaintext unless a
// hashing verifier is configured).
type Account struct {
	Username   string
	Credential string
}

// Field names of an account document. They match the document shape the
// vault has always written so existing data stays readable.
const (
	AccountFieldUsername   = "username"
	AccountFieldCredential = "password"
)

// AccountsCollection is the collection path holding one document per account.
const AccountsCollection = "users"

// ToDocument converts the account into its stored document form.
func (a Account) ToDocument() Document {
	return Document{
		ID: a.Username,
		Fields: map[string]string{
			AccountFieldUsername:   a.Username,
			AccountFieldCredential: a.Credential,
		},
	}
}

// AccountFromDocument rebuilds an account from a stored document. The
// document ID is authoritative for the username.
func AccountFromDocument(doc Document) Account {
	return Account{
		Username:   doc.ID,
		Credential: doc.Fields[AccountFieldCredential],
	}
}
