package testfixtures

import (
	"context"
	"testing"

	"github.com/Cefalo/quick-meet/internal/application"
)

func TestServiceFactorySharesCatalog(t *testing.T) {
	factory := NewServiceFactory()
	principal := application.Principal{Email: "alice@example.com", Domain: DefaultDomain}

	floors, err := factory.NewRoomService().ListFloors(context.Background(), principal)
	if err != nil {
		t.Fatalf("ListFloors returned error: %v", err)
	}
	if len(floors) != 3 {
		t.Fatalf("expected three demo floors, got %v", floors)
	}

	_, err = factory.NewAvailabilityService().FindAvailableRooms(context.Background(), application.AvailabilityRequest{
		WindowStart: At(10, 0),
		WindowEnd:   At(10, 30),
		TimeZone:    "UTC",
	}, DefaultDomain)
	if err != nil {
		t.Fatalf("FindAvailableRooms returned error: %v", err)
	}

	if calls := len(factory.Provider.CallsTo("ListRooms")); calls != 1 {
		t.Fatalf("expected services to share one catalog fetch, got %d", calls)
	}
}
