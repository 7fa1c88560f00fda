package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"poi-map/config"
	"poi-map/models"
)

const (
	geoKey  = "pois:geo"
	dataKey = "pois:data"

	// NearbyLimit caps the number of results of a radius query.
	NearbyLimit = 50

	earthRadiusMeters = 6371008.8
)

// GeoService answers radius queries over the store. It mirrors every store
// snapshot into a Redis GEO set when a client is configured and keeps an
// in-memory copy used when Redis is absent or failing.
type GeoService struct {
	RedisClient *redis.Client
	logger      *zap.Logger

	mu   sync.RWMutex
	pois []models.POI
}

func NewGeoService(client *redis.Client, logger *zap.Logger) *GeoService {
	return &GeoService{RedisClient: client, logger: logger}
}

// NewRedisClient connects to the configured Redis. It returns nil when no
// address is configured.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Sync replaces the index contents with rows. It has the signature of a
// store change hook.
func (s *GeoService) Sync(ctx context.Context, rows []models.POI) {
	s.mu.Lock()
	s.pois = rows
	s.mu.Unlock()

	if s.RedisClient == nil {
		return
	}
	if err := s.seedRedis(ctx, rows); err != nil {
		s.logger.Warn("Failed to mirror POIs into Redis", zap.Error(err))
		return
	}
	s.logger.Debug("Mirrored POIs into Redis", zap.Int("count", len(rows)))
}

func (s *GeoService) seedRedis(ctx context.Context, rows []models.POI) error {
	locations := make([]*redis.GeoLocation, 0, len(rows))
	data := make(map[string]any, len(rows))
	for _, poi := range rows {
		poiJSON, err := json.Marshal(poi)
		if err != nil {
			return fmt.Errorf("marshal POI %s: %w", poi.ID, err)
		}
		data[poi.ID] = poiJSON
		locations = append(locations, &redis.GeoLocation{
			Name:      poi.ID,
			Longitude: poi.Longitude,
			Latitude:  poi.Latitude,
		})
	}

	_, err := s.RedisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, geoKey, dataKey)
		if len(rows) == 0 {
			return nil
		}
		pipe.GeoAdd(ctx, geoKey, locations...)
		pipe.HSet(ctx, dataKey, data)
		return nil
	})
	return err
}

// FindNearbyPOIs returns up to NearbyLimit POIs within radius meters of
// (lat, lon), closest first. A non-empty category keeps only POIs carrying
// it.
func (s *GeoService) FindNearbyPOIs(ctx context.Context, lat, lon, radius float64, category string) ([]models.NearbyPOI, error) {
	if s.RedisClient != nil {
		results, err := s.findNearbyRedis(ctx, lat, lon, radius, category)
		if err == nil {
			return results, nil
		}
		s.logger.Warn("Redis GeoRadius failed, using in-memory index", zap.Error(err))
	}
	return s.findNearbyMemory(lat, lon, radius, category), nil
}

func (s *GeoService) findNearbyRedis(ctx context.Context, lat, lon, radius float64, category string) ([]models.NearbyPOI, error) {
	query := &redis.GeoRadiusQuery{
		Radius:   radius,
		Unit:     "m",
		WithDist: true,
		Sort:     "ASC",
	}
	// The category is only known after HMGet, so a filtered query reads the
	// whole radius and caps afterwards.
	if category == "" {
		query.Count = NearbyLimit
	}
	geoResults, err := s.RedisClient.GeoRadius(ctx, geoKey, lon, lat, query).Result()
	if err != nil {
		return nil, err
	}
	if len(geoResults) == 0 {
		return []models.NearbyPOI{}, nil
	}

	ids := make([]string, len(geoResults))
	for i, r := range geoResults {
		ids[i] = r.Name
	}
	values, err := s.RedisClient.HMGet(ctx, dataKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	candidates := make([]models.NearbyPOI, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			s.logger.Debug("POI missing from Redis hash", zap.String("id", ids[i]))
			continue
		}
		var poi models.POI
		if err := json.Unmarshal([]byte(raw), &poi); err != nil {
			s.logger.Warn("Failed to unmarshal POI", zap.String("id", ids[i]), zap.Error(err))
			continue
		}
		candidates = append(candidates, models.NearbyPOI{POI: poi, Distance: geoResults[i].Dist})
	}
	return keepNearby(candidates, category), nil
}

func (s *GeoService) findNearbyMemory(lat, lon, radius float64, category string) []models.NearbyPOI {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []models.NearbyPOI
	for _, poi := range s.pois {
		d := Haversine(lat, lon, poi.Latitude, poi.Longitude)
		if d <= radius {
			candidates = append(candidates, models.NearbyPOI{POI: poi.Clone(), Distance: d})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Distance < candidates[j].Distance })
	return keepNearby(candidates, category)
}

// keepNearby applies the category filter to distance-sorted candidates and
// then caps the result at NearbyLimit.
func keepNearby(candidates []models.NearbyPOI, category string) []models.NearbyPOI {
	var want map[string]struct{}
	if category != "" {
		want = map[string]struct{}{category: {}}
	}
	results := []models.NearbyPOI{}
	for _, c := range candidates {
		if want != nil && !c.HasCategory(want) {
			continue
		}
		results = append(results, c)
		if len(results) == NearbyLimit {
			break
		}
	}
	return results
}

// Close releases the Redis client, if any.
func (s *GeoService) Close() error {
	if s.RedisClient == nil {
		return nil
	}
	return s.RedisClient.Close()
}

// Haversine is the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

