package location

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/relabs-tech/route_tracker/internal/gps"
)

func vehicleFeed(t *testing.T) []byte {
	t.Helper()
	fm := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1772352000),
		},
		Entity: []*gtfsrtpb.FeedEntity{
			{
				Id: proto.String("e1"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Vehicle:  &gtfsrtpb.VehicleDescriptor{Id: proto.String("bus-7")},
					Position: &gtfsrtpb.Position{Latitude: proto.Float32(28.6), Longitude: proto.Float32(77.2)},
				},
			},
			{
				Id: proto.String("e2"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Vehicle: &gtfsrtpb.VehicleDescriptor{Id: proto.String("bus-42")},
					Position: &gtfsrtpb.Position{
						Latitude:  proto.Float32(26.9124),
						Longitude: proto.Float32(75.7873),
						Bearing:   proto.Float32(180),
						Speed:     proto.Float32(10),
					},
					Timestamp: proto.Uint64(1772352030),
				},
			},
			{
				Id: proto.String("no-descriptor"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Position: &gtfsrtpb.Position{Latitude: proto.Float32(12.97), Longitude: proto.Float32(77.59)},
				},
			},
		},
	}
	data, err := proto.Marshal(fm)
	if err != nil {
		t.Fatalf("proto.Marshal: %v", err)
	}
	return data
}

func TestParseVehicleFix(t *testing.T) {
	data := vehicleFeed(t)

	f, err := ParseVehicleFix(data, "bus-42")
	if err != nil {
		t.Fatalf("ParseVehicleFix: %v", err)
	}
	if math.Abs(f.Latitude-26.9124) > 1e-5 || math.Abs(f.Longitude-75.7873) > 1e-5 {
		t.Errorf("position = %v,%v", f.Latitude, f.Longitude)
	}
	if !f.Time.Equal(time.Unix(1772352030, 0)) {
		t.Errorf("time = %v", f.Time)
	}
	if math.Abs(f.SpeedKnots-19.43844) > 1e-4 || f.CourseDeg != 180 {
		t.Errorf("speed/course = %v/%v", f.SpeedKnots, f.CourseDeg)
	}

	// header timestamp when the vehicle has none
	f, err = ParseVehicleFix(data, "bus-7")
	if err != nil {
		t.Fatalf("ParseVehicleFix bus-7: %v", err)
	}
	if !f.Time.Equal(time.Unix(1772352000, 0)) {
		t.Errorf("time = %v", f.Time)
	}

	// entity ID when there is no descriptor
	if _, err := ParseVehicleFix(data, "no-descriptor"); err != nil {
		t.Errorf("entity id lookup: %v", err)
	}

	if _, err := ParseVehicleFix(data, "tram-1"); !errors.Is(err, ErrVehicleNotFound) {
		t.Errorf("missing vehicle: %v", err)
	}
	if _, err := ParseVehicleFix([]byte{0xff, 0xff}, "bus-42"); err == nil {
		t.Error("expected decode error")
	}
}

func TestGTFSRTSource_HTTP(t *testing.T) {
	feed := vehicleFeed(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Header().Set("Content-Type", "application/x-protobuf")
			_, _ = w.Write(feed)
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	src := NewGTFSRTSource(srv.URL+"/vp", "bus-42", time.Minute)
	f, err := src.CurrentPosition(ctx)
	if err != nil {
		t.Fatalf("CurrentPosition: %v", err)
	}
	if f.Source != "gtfsrt" {
		t.Errorf("source = %q", f.Source)
	}

	if err := NewGTFSRTSource(srv.URL+"/forbidden", "bus-42", time.Minute).RequestPermission(ctx); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("403: %v", err)
	}
	if err := NewGTFSRTSource(srv.URL+"/broken", "bus-42", time.Minute).RequestPermission(ctx); err == nil || errors.Is(err, ErrPermissionDenied) {
		t.Errorf("500: %v", err)
	}

	fixes := make(chan gps.Fix, 1)
	sub, err := src.Watch(ctx, DefaultWatchOptions(), func(f gps.Fix) { fixes <- f })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	select {
	case got := <-fixes:
		if !got.Time.Equal(f.Time) {
			t.Errorf("watched fix = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no fix from first poll")
	}
	sub.Remove()
}
