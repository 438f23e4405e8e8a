package mongo

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

var (
	Vehicles = Collection{
		Name:         "vehicles",
		SearchFields: []string{"plate_number", "make", "model"},
		Indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "plate_number", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
	}
	Drivers = Collection{
		Name:         "drivers",
		SearchFields: []string{"first_name", "last_name", "phone", "license_number"},
		Indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "license_number", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
	}
	Schedules = Collection{
		Name:      "schedules",
		DateField: "start_time",
		Indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "start_time", Value: -1}}},
			{Keys: bson.D{{Key: "vehicle_id", Value: 1}, {Key: "start_time", Value: -1}}},
		},
	}
	Payments = Collection{
		Name:         "payments",
		SearchFields: []string{"reference"},
		DateField:    "due_date",
		Indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "status", Value: 1}}},
		},
	}
	Documents = Collection{
		Name:         "documents",
		SearchFields: []string{"title"},
		DateField:    "expires_at",
		Indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "owner_type", Value: 1}, {Key: "owner_id", Value: 1}}},
		},
	}
	MediaFiles = Collection{
		Name:         "media",
		SearchFields: []string{"file_name"},
	}
	Notifications = Collection{
		Name: "notifications",
		Indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "read", Value: 1}}},
		},
	}
)

// Repositories holds one repository per fleet collection.
type Repositories struct {
	Users         *UserRepository
	Audit         *AuditRepository
	Vehicles      *ResourceRepository[fleet.Vehicle, *fleet.Vehicle]
	Drivers       *ResourceRepository[fleet.Driver, *fleet.Driver]
	Schedules     *ResourceRepository[fleet.Schedule, *fleet.Schedule]
	Payments      *ResourceRepository[fleet.Payment, *fleet.Payment]
	Documents     *ResourceRepository[fleet.Document, *fleet.Document]
	Media         *ResourceRepository[fleet.Media, *fleet.Media]
	Notifications *ResourceRepository[fleet.Notification, *fleet.Notification]
}

func NewRepositories(db *mongo.Database) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(db),
		Audit:         NewAuditRepository(db),
		Vehicles:      NewResourceRepository[fleet.Vehicle, *fleet.Vehicle](db, Vehicles),
		Drivers:       NewResourceRepository[fleet.Driver, *fleet.Driver](db, Drivers),
		Schedules:     NewResourceRepository[fleet.Schedule, *fleet.Schedule](db, Schedules),
		Payments:      NewResourceRepository[fleet.Payment, *fleet.Payment](db, Payments),
		Documents:     NewResourceRepository[fleet.Document, *fleet.Document](db, Documents),
		Media:         NewResourceRepository[fleet.Media, *fleet.Media](db, MediaFiles),
		Notifications: NewResourceRepository[fleet.Notification, *fleet.Notification](db, Notifications),
	}
}

// Indexers lists every repository that owns indexes.
func (r *Repositories) Indexers() []Indexer {
	return []Indexer{
		r.Users, r.Audit, r.Vehicles, r.Drivers, r.Schedules,
		r.Payments, r.Documents, r.Media, r.Notifications,
	}
}
