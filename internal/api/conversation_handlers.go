package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"go-llmlab/internal/config"
	"go-llmlab/internal/convo"
)

// maxRounds bounds a single request; each round costs one call per speaker.
const maxRounds = 50

var errInvalidConversation = errors.New("invalid conversation request")

// ConversationRequest starts a run. Every field is optional: the cast
// defaults to the configured cast file or the built-in one.
type ConversationRequest struct {
	Cast      *convo.Cast `json:"cast"`
	Rounds    *int        `json:"rounds"`
	Freshness string      `json:"freshness"`
}

type preparedConversation struct {
	cast        *convo.Cast
	rounds      int
	policy      convo.FreshnessPolicy
	coordinator *convo.Coordinator
}

func defaultCast(cfg *config.Config) (*convo.Cast, error) {
	if cfg.Conversation.CastFile != "" {
		return convo.LoadCast(cfg.Conversation.CastFile)
	}
	return convo.DefaultCast(), nil
}

// prepareConversation resolves the cast, round count and policy of req and
// builds its coordinator.
func prepareConversation(cfg *config.Config, svc *Services, req ConversationRequest) (*preparedConversation, error) {
	cast := req.Cast
	if cast == nil {
		c, err := defaultCast(cfg)
		if err != nil {
			return nil, err
		}
		cast = c
	} else if err := cast.Validate(); err != nil {
		return nil, err
	}

	rounds := cfg.Conversation.Rounds
	if cast.Rounds > 0 {
		rounds = cast.Rounds
	}
	if req.Rounds != nil {
		rounds = *req.Rounds
	}
	if rounds < 0 || rounds > maxRounds {
		return nil, fmt.Errorf("%w: rounds must be between 0 and %d", errInvalidConversation, maxRounds)
	}

	freshness := req.Freshness
	if freshness == "" {
		freshness = cfg.Conversation.Freshness
	}
	policy, err := convo.ParseFreshness(freshness)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidConversation, err)
	}

	speakers, err := cast.Resolve(svc.backend)
	if err != nil {
		return nil, err
	}
	coord, err := convo.NewCoordinator(speakers, convo.WithFreshness(policy))
	if err != nil {
		return nil, err
	}
	return &preparedConversation{cast: cast, rounds: rounds, policy: policy, coordinator: coord}, nil
}

func conversationStatus(err error) int {
	if errors.Is(err, errInvalidConversation) {
		return http.StatusBadRequest
	}
	return statusFor(err)
}

// CreateConversationHandler runs a whole conversation and archives it as it
// goes. A failed run keeps its partial turns; the response carries the id.
func CreateConversationHandler(cfg *config.Config, svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConversationRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, "Invalid request")
				return
			}
		}
		prep, err := prepareConversation(cfg, svc, req)
		if err != nil {
			c.JSON(conversationStatus(err), gin.H{"error": gin.H{"message": err.Error()}})
			return
		}

		ctx := c.Request.Context()
		userID, ok := requireUserID(c)
		if !ok {
			return
		}
		conv, err := svc.Store.StartConversation(ctx, userID, prep.cast, prep.rounds, prep.policy)
		if err != nil {
			respondError(c, err)
			return
		}
		rec := svc.Store.NewRecorder(ctx, conv)
		prep.coordinator.OnReply(rec.Observe)

		runErr := prep.coordinator.Run(ctx, prep.rounds)
		if err := rec.Finish(runErr); err != nil {
			log.WithError(err).WithField("conversation", conv.ID).Error("failed to archive conversation")
		}
		if runErr != nil {
			c.JSON(statusFor(runErr), gin.H{
				"error":           gin.H{"message": runErr.Error()},
				"conversation_id": conv.ID,
			})
			return
		}

		saved, err := svc.Store.GetConversation(ctx, conv.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, saved)
	}
}

func ListConversationsHandler(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		userID, ok := requireUserID(c)
		if !ok {
			return
		}
		convs, err := svc.Store.ListConversations(c.Request.Context(), userID, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": convs})
	}
}

func GetConversationHandler(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "Invalid conversation id")
			return
		}
		conv, err := svc.Store.GetConversation(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		userID, ok := requireUserID(c)
		if !ok {
			return
		}
		if conv.UserID != userID && c.GetString("role") != "admin" {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "not found"}})
			return
		}
		c.JSON(http.StatusOK, conv)
	}
}
