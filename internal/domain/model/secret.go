package model

// Secret is a named value stored under exactly one account. Name is unique
// within the owning account's scope only.
type Secret struct {
	Name  string
	Value string
}

// Field names of a secret document.
const (
	SecretFieldName  = "passwordName"
	SecretFieldValue = "password"
)

// SecretsCollection returns the collection path holding the secrets of the
// given account. The path nests under the account's own document.
func SecretsCollection(username string) string {
	return AccountsCollection + "/" + username + "/passwords"
}

// ToDocument converts the secret into its stored document form.
func (s Secret) ToDocument() Document {
	return Document{
		ID: s.Name,
		Fields: map[string]string{
			SecretFieldName:  s.Name,
			SecretFieldValue: s.Value,
		},
	}
}

// SecretFromDocument rebuilds a secret from a stored document.
func SecretFromDocument(doc Document) Secret {
	return Secret{
		Name:  doc.ID,
		Value: doc.Fields[SecretFieldValue],
	}
}
