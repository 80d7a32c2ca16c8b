package mongodb

import "go.pilab.hu/feelscape/domain"

const (
	AccountsCollection = domain.AccountsCollection // Identity records
	ProfilesCollection = domain.UsersCollection    // Mirrored profile documents
)
