package server

import (
	"net/http"
	"time"

	"github.com/graphql-go/graphql"
	gqlhandler "github.com/graphql-go/handler"

	"github.com/roundtable-labs/roundsync/internal/store"
)

// newGraphQLHandler builds the read-only query surface over meetings
// and their transcripts.
func newGraphQLHandler(st *store.Store) (http.Handler, error) {
	messageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Message",
		Fields: graphql.Fields{
			"id":        {Type: graphql.NewNonNull(graphql.String)},
			"agentId":   {Type: graphql.String},
			"agentName": {Type: graphql.String},
			"role":      {Type: graphql.String},
			"content":   {Type: graphql.NewNonNull(graphql.String)},
			"round":     {Type: graphql.Int},
			"createdAt": {Type: graphql.String},
		},
	})

	meetingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Meeting",
		Fields: graphql.Fields{
			"id":                {Type: graphql.NewNonNull(graphql.String)},
			"topic":             {Type: graphql.String},
			"status":            {Type: graphql.String},
			"currentRound":      {Type: graphql.Int},
			"maxRounds":         {Type: graphql.Int},
			"backgroundRunning": {Type: graphql.Boolean},
			"createdAt":         {Type: graphql.String},
			"messages": {
				Type: graphql.NewList(messageType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					m, ok := p.Source.(meetingView)
					if !ok {
						return nil, nil
					}
					msgs, err := st.ListMessages(m.ID)
					if err != nil {
						return nil, err
					}
					return messageViews(msgs), nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"meetings": {
				Type: graphql.NewList(meetingType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					meetings, err := st.ListMeetings()
					if err != nil {
						return nil, err
					}
					out := make([]meetingView, 0, len(meetings))
					for _, m := range meetings {
						out = append(out, newMeetingView(m))
					}
					return out, nil
				},
			},
			"meeting": {
				Type: meetingType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					m, err := st.GetMeeting(id)
					if err != nil {
						return nil, err
					}
					return newMeetingView(*m), nil
				},
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
	if err != nil {
		return nil, err
	}

	return gqlhandler.New(&gqlhandler.Config{
		Schema:   &schema,
		Pretty:   true,
		GraphiQL: true,
	}), nil
}

// meetingView flattens store.Meeting for graphql-go field resolution.
type meetingView struct {
	ID                string `json:"id"`
	Topic             string `json:"topic"`
	Status            string `json:"status"`
	CurrentRound      int    `json:"currentRound"`
	MaxRounds         int    `json:"maxRounds"`
	BackgroundRunning bool   `json:"backgroundRunning"`
	CreatedAt         string `json:"createdAt"`
}

func newMeetingView(m store.Meeting) meetingView {
	return meetingView{
		ID:                m.ID,
		Topic:             m.Topic,
		Status:            string(m.Status),
		CurrentRound:      m.CurrentRound,
		MaxRounds:         m.MaxRounds,
		BackgroundRunning: m.BackgroundRunning,
		CreatedAt:         m.CreatedAt.Format(time.RFC3339),
	}
}

type messageView struct {
	ID        string `json:"id"`
	AgentID   string `json:"agentId"`
	AgentName string `json:"agentName"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Round     int    `json:"round"`
	CreatedAt string `json:"createdAt"`
}

func messageViews(msgs []store.Message) []messageView {
	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageView{
			ID:        m.ID,
			AgentID:   m.AgentID,
			AgentName: m.AgentName,
			Role:      m.Role,
			Content:   m.Content,
			Round:     m.Round,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
