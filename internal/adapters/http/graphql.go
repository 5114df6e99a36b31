package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/kilopost/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	roadType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Road",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.String},
			"ref":       &graphql.Field{Type: graphql.String},
			"name":      &graphql.Field{Type: graphql.String},
			"length_km": &graphql.Field{Type: graphql.Float},
			"wkt":       &graphql.Field{Type: graphql.String},
		},
	})

	calibrationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Calibration",
		Fields: graphql.Fields{
			"chainage": &graphql.Field{Type: graphql.Float},
			"index":    &graphql.Field{Type: graphql.Int},
			"lat": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.Calibration).Point.Lat, nil
				},
			},
			"lon": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.Calibration).Point.Lon, nil
				},
			},
		},
	})

	locatedType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LocatedPoint",
		Fields: graphql.Fields{
			"chainage": &graphql.Field{Type: graphql.Float},
			"lat": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.LocatedPoint).Point.Lat, nil
				},
			},
			"lon": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.LocatedPoint).Point.Lon, nil
				},
			},
		},
	})

	sectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Section",
		Fields: graphql.Fields{
			"start_ch": &graphql.Field{Type: graphql.Float},
			"end_ch":   &graphql.Field{Type: graphql.Float},
			"length":   &graphql.Field{Type: graphql.Float},
			"start_lat": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.Section).Start.Lat, nil
				},
			},
			"start_lon": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.Section).Start.Lon, nil
				},
			},
			"end_lat": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.Section).End.Lat, nil
				},
			},
			"end_lon": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.Section).End.Lon, nil
				},
			},
		},
	})

	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "NetworkStats",
		Fields: graphql.Fields{
			"road_count":      &graphql.Field{Type: graphql.Int},
			"total_length_km": &graphql.Field{Type: graphql.Float},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"roads": &graphql.Field{
				Type:        graphql.NewList(roadType),
				Description: "List stored roads",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					limit := p.Args["limit"].(int)
					offset := p.Args["offset"].(int)
					roads, _, err := deps.Roads.List(p.Context, limit, offset)
					return roads, err
				},
			},
			"road": &graphql.Field{
				Type:        roadType,
				Description: "Get a road by reference code",
				Args: graphql.FieldConfigArgument{
					"ref": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Roads.GetByRef(p.Context, p.Args["ref"].(string))
				},
			},
			"networkStats": &graphql.Field{
				Type:        statsType,
				Description: "Summary of the stored road network",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Roads.Stats(p.Context)
				},
			},
			"calibrate": &graphql.Field{
				Type:        calibrationType,
				Description: "Snap a point onto a road and return its chainage (radius in degrees)",
				Args: graphql.FieldConfigArgument{
					"ref":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.001},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					point := domain.GeoPoint{
						Lat: p.Args["lat"].(float64),
						Lon: p.Args["lon"].(float64),
					}
					return deps.Chainage.CalibrateOnRoad(p.Context, p.Args["ref"].(string), point, p.Args["radius"].(float64))
				},
			},
			"pointAt": &graphql.Field{
				Type:        locatedType,
				Description: "Coordinate at a chainage (km) along a road",
				Args: graphql.FieldConfigArgument{
					"ref":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"chainage": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Chainage.LocateOnRoad(p.Context, p.Args["ref"].(string), p.Args["chainage"].(float64))
				},
			},
			"section": &graphql.Field{
				Type:        sectionType,
				Description: "Sub-line of a road between two chainages (km)",
				Args: graphql.FieldConfigArgument{
					"ref":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"start_ch": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"end_ch":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Chainage.ExtractOnRoad(p.Context, p.Args["ref"].(string),
						p.Args["start_ch"].(float64), p.Args["end_ch"].(float64))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
