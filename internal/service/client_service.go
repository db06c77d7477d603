package service

import (
	"paydash-go/pkg/log"
	"paydash-go/pkg/token"

	"github.com/google/uuid"
)

// ClientDTO 是新注册的匿名客户端。
type ClientDTO struct {
	ClientID string `json:"clientId"`
	Token    string `json:"token"`
}

// ClientService 为浏览器分配匿名身份。每个客户端拥有独立的会话列表。
type ClientService interface {
	Register() (ClientDTO, error)
}

type clientService struct {
	jwtManager *token.JWTManager
}

// NewClientService 创建一个新的 ClientService。
func NewClientService(jwtManager *token.JWTManager) ClientService {
	return &clientService{jwtManager: jwtManager}
}

func (s *clientService) Register() (ClientDTO, error) {
	clientID := uuid.NewString()
	tok, err := s.jwtManager.GenerateToken(clientID)
	if err != nil {
		log.Errorf("[ClientService] 签发令牌失败: %v", err)
		return ClientDTO{}, err
	}
	log.Infof("[ClientService] 注册新客户端: %s", clientID)
	return ClientDTO{ClientID: clientID, Token: tok}, nil
}
